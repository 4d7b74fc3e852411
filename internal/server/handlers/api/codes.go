package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // the bearer token is invalid, expired, or malformed.

	// File errors
	CodeFileNotFound    = "E_FILE_NOT_FOUND"    // no live file at the path or id.
	CodeFileConflict    = "E_FILE_CONFLICT"     // the optimistic guard failed, the file changed since the client saw it.
	CodeFileInvalidPath = "E_FILE_INVALID_PATH" // the file path is absolute, empty, or escapes the workspace.

	// Blob errors
	CodeBlobPutFailed = "E_BLOB_PUT_OPERATION_FAILED" // a failure during the operation to upload/put a blob.
	CodeBlobGetFailed = "E_BLOB_GET_OPERATION_FAILED" // a failure during the operation to download/get a blob.
)
