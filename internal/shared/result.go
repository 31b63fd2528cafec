package shared

import "errors"

// Result is the success/kind/message outcome returned to callers of mutating
// operations.
type Result struct {
	Success   bool   `json:"success"`
	Kind      Kind   `json:"kind,omitempty"`
	Message   string `json:"message"`
	Line      int    `json:"line,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// OK builds a successful Result.
func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// ResultOf converts a failed operation into a Result.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	res := Result{Kind: KindOf(err), Message: UserSafeMessage(err)}
	var classified *Error
	if errors.As(err, &classified) {
		res.Line = classified.Line
		res.ProductID = classified.ProductID
	}
	return res
}
