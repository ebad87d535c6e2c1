package model

import "testing"

func TestPermissionAtLeast(t *testing.T) {
	cases := []struct {
		have    Permission
		minimum Permission
		want    bool
	}{
		{PermissionOwner, PermissionEditor, true},
		{PermissionEditor, PermissionEditor, true},
		{PermissionViewer, PermissionEditor, false},
		{PermissionViewer, PermissionViewer, true},
		{PermissionEditor, PermissionOwner, false},
		{PermissionNone, PermissionViewer, false},
		{Permission("ADMIN"), PermissionViewer, false},
	}

	for _, tc := range cases {
		if got := tc.have.AtLeast(tc.minimum); got != tc.want {
			t.Errorf("%q.AtLeast(%q) = %v, want %v", tc.have, tc.minimum, got, tc.want)
		}
	}
}

func TestPermissionGrantable(t *testing.T) {
	for p, want := range map[Permission]bool{
		PermissionViewer: true,
		PermissionEditor: true,
		PermissionOwner:  false,
		PermissionNone:   false,
	} {
		if p.Grantable() != want {
			t.Errorf("%q.Grantable() = %v, want %v", p, !want, want)
		}
	}
}

func TestPairKeyOfIsOrderIndependent(t *testing.T) {
	if PairKeyOf(7, 3) != PairKeyOf(3, 7) || PairKeyOf(3, 7) != "3:7" {
		t.Fatalf("unexpected pair keys %q %q", PairKeyOf(7, 3), PairKeyOf(3, 7))
	}
}
