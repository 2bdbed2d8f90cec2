package service

import "opencampus/backend/internal/model"

// Actor 调用方上下文，由接入层从 Token 中解析后显式传入每个写操作
type Actor struct {
	UserID    string
	CompanyID string
	Role      string
}

func (a Actor) userRef() *string {
	id := a.UserID
	return &id
}

func (a Actor) companyRef() *string {
	if a.CompanyID == "" {
		return nil
	}
	id := a.CompanyID
	return &id
}

func (a Actor) scope() model.CompanyScoped {
	return model.CompanyScoped{CompanyID: a.companyRef()}
}
