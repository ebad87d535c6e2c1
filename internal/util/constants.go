package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 聊天附件上传限制
const (
	MaxAttachmentSize = 10 << 20
	MaxAttachments    = 9
)

var (
	AllowedAttachmentExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".pdf", ".txt", ".zip"}
)
