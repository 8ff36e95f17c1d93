package apperrors

const (
	MsgInternal          = "internalError"
	MsgUnauthorized      = "unauthorized"
	MsgSessionExpired    = "sessionExpired"
	MsgInvalidToken      = "invalidToken"
	MsgInvalidJSON       = "invalidJSON"
	MsgValidationFailed  = "validationFailed"
	MsgUnsupportedMedia  = "unsupportedMediaType"
	MsgTooManyRequests   = "tooManyRequests"
	MsgInvalidID         = "invalidID"
	MsgInvalidPagination = "invalidPagination"
	MsgRouteNotFound     = "routeNotFound"
	MsgMethodNotAllowed  = "methodNotAllowed"

	MsgInvalidName        = "invalidName"
	MsgInvalidEmail       = "invalidEmail"
	MsgWeakPassword       = "weakPassword"
	MsgAccountExists      = "accountExists"
	MsgInvalidCredentials = "invalidCredentials"
	MsgAccountLocked      = "accountLocked"
	MsgUserNotFound       = "userNotFound"

	MsgInvalidTitle        = "invalidTitle"
	MsgInvalidDescription  = "invalidDescription"
	MsgInvalidBudget       = "invalidBudget"
	MsgInvalidCategory     = "invalidCategory"
	MsgInvalidDeadline     = "invalidDeadline"
	MsgInvalidRoleFilter   = "invalidRoleFilter"
	MsgInvalidStatusFilter = "invalidStatusFilter"

	MsgTaskNotFound       = "taskNotFound"
	MsgOwnerCannotApply   = "ownerCannotApply"
	MsgTaskNotOpen        = "taskNotOpen"
	MsgAlreadyApplied     = "alreadyApplied"
	MsgNotTaskOwner       = "notTaskOwner"
	MsgTaskNotAssignable  = "taskNotAssignable"
	MsgNotAnApplicant     = "notAnApplicant"
	MsgNotAssignee        = "notAssignee"
	MsgTaskNotInProgress  = "taskNotInProgress"
	MsgTaskChanged        = "taskChanged"
	MsgTaskAlreadyPaid    = "taskAlreadyPaid"
	MsgTaskNotCompleted   = "taskNotCompleted"
	MsgTaskNotAssigned    = "taskNotAssigned"
	MsgTaskCancelled      = "taskCancelled"
	MsgTaskHasFunds       = "taskHasFunds"
	MsgCollectionRequired = "collectionRequired"
	MsgCollectionExists   = "collectionExists"
	MsgPayoutExists       = "payoutExists"

	MsgInvalidAmount        = "invalidAmount"
	MsgInvalidPhone         = "invalidPhone"
	MsgTransactionNotFound  = "transactionNotFound"
	MsgNotificationNotFound = "notificationNotFound"
	MsgNotParticipant       = "notParticipant"
	MsgInvalidMessage       = "invalidMessage"
	MsgInvalidCallback      = "invalidCallback"

	MsgGatewayAuth        = "gatewayAuth"
	MsgGatewayUnavailable = "gatewayUnavailable"
	MsgGatewayRejected    = "gatewayRejected"
)

// defaultMessages carries the English text used when no translation bundle
// has the message.
var defaultMessages = map[string]string{
	MsgInternal:          "Something went wrong, please try again later",
	MsgUnauthorized:      "Unauthorized",
	MsgSessionExpired:    "Your session has expired, please log in again",
	MsgInvalidToken:      "Invalid token",
	MsgInvalidJSON:       "Invalid JSON body",
	MsgValidationFailed:  "Validation failed",
	MsgUnsupportedMedia:  "Content-Type must be application/json",
	MsgTooManyRequests:   "Too many requests, please try again later",
	MsgInvalidID:         "Invalid identifier",
	MsgInvalidPagination: "Invalid pagination parameters",
	MsgRouteNotFound:     "Route not found",
	MsgMethodNotAllowed:  "Method not allowed",

	MsgInvalidName:        "Name must be between 2 and 100 characters",
	MsgInvalidEmail:       "Email address is not valid",
	MsgWeakPassword:       "Password must be at least 6 characters",
	MsgAccountExists:      "An account with this email or phone already exists",
	MsgInvalidCredentials: "Invalid email/phone or password",
	MsgAccountLocked:      "Too many failed attempts, account temporarily locked",
	MsgUserNotFound:       "User not found",

	MsgInvalidTitle:        "Title must be between 3 and 120 characters",
	MsgInvalidDescription:  "Description must be at most 5000 characters",
	MsgInvalidBudget:       "Budget must be greater than zero",
	MsgInvalidCategory:     "Unknown task category",
	MsgInvalidDeadline:     "Deadline must be in the future",
	MsgInvalidRoleFilter:   "Role must be one of owner, worker, applicant",
	MsgInvalidStatusFilter: "Unknown task status",

	MsgTaskNotFound:       "Task not found",
	MsgOwnerCannotApply:   "You cannot apply to your own task",
	MsgTaskNotOpen:        "Task is not open for applications",
	MsgAlreadyApplied:     "You have already applied to this task",
	MsgNotTaskOwner:       "Only the task owner can do this",
	MsgTaskNotAssignable:  "Task can no longer be assigned",
	MsgNotAnApplicant:     "User has not applied to this task",
	MsgNotAssignee:        "Only the assigned worker can do this",
	MsgTaskNotInProgress:  "Task is not in progress",
	MsgTaskChanged:        "Task was changed by another request, please reload",
	MsgTaskAlreadyPaid:    "Task is already paid",
	MsgTaskNotCompleted:   "Task has not been completed yet",
	MsgTaskNotAssigned:    "Task has no assigned worker",
	MsgTaskCancelled:      "Task has been cancelled",
	MsgTaskHasFunds:       "Task holds collected funds and cannot be deleted",
	MsgCollectionRequired: "Payment for this task has not been received yet",
	MsgCollectionExists:   "Payment for this task is already pending or received",
	MsgPayoutExists:       "A payout for this task is already pending or completed",

	MsgInvalidAmount:        "Amount must be greater than zero",
	MsgInvalidPhone:         "Phone number must be a valid Safaricom or Airtel number",
	MsgTransactionNotFound:  "Transaction not found",
	MsgNotificationNotFound: "Notification not found",
	MsgNotParticipant:       "You are not a participant of this task",
	MsgInvalidMessage:       "Message must be between 1 and 2000 characters",
	MsgInvalidCallback:      "Callback payload is incomplete",

	MsgGatewayAuth:        "Could not authenticate with the payment gateway",
	MsgGatewayUnavailable: "Payment gateway is unavailable, please try again",
	MsgGatewayRejected:    "Payment gateway rejected the request",
}

// DefaultMessage returns the English text for id, or id itself.
func DefaultMessage(id string) string {
	if m, ok := defaultMessages[id]; ok {
		return m
	}
	return id
}
