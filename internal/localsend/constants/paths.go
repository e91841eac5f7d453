package constants

const (
	DefaultPort = 53317

	UploadPath      = "/api/localsend/v2/upload"
	PreuploadPath   = "/api/localsend/v2/prepare-upload"
	CancelPath      = "/api/localsend/v2/cancel"
	InfoPath        = "/api/localsend/v2/info"
	RegisterPath    = "/api/localsend/v2/register"
	DownloadPath    = "/api/localsend/v2/download"
	PreDownloadPath = "/api/localsend/v2/prepare-download"
)

// MulticastGroup is the well-known discovery group.
const MulticastGroup = "224.0.0.167"
