package constants

// Remote Table Error Codes
// These constants define specific error scenarios for the spreadsheet API

const (
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeSpreadsheetMissing = "SPREADSHEET_NOT_FOUND"
	ErrCodeTabNotFound        = "TAB_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeNetworkError       = "NETWORK_ERROR"
	ErrCodeTokenExchange      = "TOKEN_EXCHANGE_FAILED"
)

// Error Messages
// Human-readable messages corresponding to error codes

var RemoteErrorMessages = map[string]string{
	ErrCodeInvalidToken:       "The bearer token was rejected by the spreadsheet API",
	ErrCodeSpreadsheetMissing: "The spreadsheet was not found or you don't have access to it",
	ErrCodeTabNotFound:        "The specified tab was not found in the spreadsheet",
	ErrCodeRateLimited:        "Spreadsheet API quota exceeded. Please try again later",
	ErrCodeNetworkError:       "Unable to reach the spreadsheet API",
	ErrCodeTokenExchange:      "Could not exchange credentials for a bearer token",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := RemoteErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
