package services

// Identity is the authenticated caller as established by the transport layer.
// A nil *Identity means the request carried no valid session. Services never
// read identity from ambient state; callers pass it explicitly.
type Identity struct {
	UserID string
	Email  string
}
