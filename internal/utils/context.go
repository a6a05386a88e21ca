package utils

import "context"

type CtxKey string

const (
	CtxUserID CtxKey = "uid"
	CtxRole   CtxKey = "role"
	CtxName   CtxKey = "name"
)

func GetString(ctx context.Context, key any) (string, bool) {
	v := ctx.Value(key)
	s, ok := v.(string)
	return s, ok
}

// Identity is the signed-in caller as set by the auth middleware.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, CtxUserID, id.UserID)
	ctx = context.WithValue(ctx, CtxRole, id.Role)
	return context.WithValue(ctx, CtxName, id.Name)
}

func IdentityFrom(ctx context.Context) Identity {
	uid, _ := GetString(ctx, CtxUserID)
	role, _ := GetString(ctx, CtxRole)
	name, _ := GetString(ctx, CtxName)
	return Identity{UserID: uid, Role: role, Name: name}
}
