package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrNotOwner        ErrCode = "NOT_OWNER"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrUsernameTaken   ErrCode = "USERNAME_TAKEN"
	ErrEmailTaken      ErrCode = "EMAIL_TAKEN"
	ErrCategoryExists  ErrCode = "CATEGORY_EXISTS"
	ErrUserNotFound    ErrCode = "USER_NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrAdNotFound      ErrCode = "AD_NOT_FOUND"
	ErrCategoryMissing ErrCode = "CATEGORY_NOT_FOUND"

	// ─── Exam sessions ─────────────────────────────────────────────────
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrNoQuestions     ErrCode = "NO_QUESTIONS"
	ErrExamInUse       ErrCode = "EXAM_IN_USE"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Payments ──────────────────────────────────────────────────────
	ErrCheckoutFailed ErrCode = "CHECKOUT_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid username/email or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotOwner:
		return "You are not the owner of this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrUsernameTaken:
		return "Username already exists."
	case ErrEmailTaken:
		return "Email already exists."
	case ErrCategoryExists:
		return "Category already exists."
	case ErrUserNotFound:
		return "User not found."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrAdNotFound:
		return "Ad not found."
	case ErrCategoryMissing:
		return "Category not found."

	case ErrNoActiveSession:
		return "There is no active session for this exam."
	case ErrNoQuestions:
		return "An exam needs at least one question."
	case ErrExamInUse:
		return "Questions cannot be changed while students have attempts in progress."

	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File size exceeds the limit."

	case ErrCheckoutFailed:
		return "Could not create the checkout session."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
