package auth

import (
	"context"

	"neuralmail/system/network"
)

// bearerInterceptor 已登录时给请求加上 Authorization 头
type bearerInterceptor struct {
	svc Service
}

func (b *bearerInterceptor) Adapt(_ context.Context, req *network.Request) error {
	if token := b.svc.AccessToken(); token != "" {
		req.Header["Authorization"] = "Bearer " + token
	}
	return nil
}
