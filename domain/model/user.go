package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	UserName  string    `json:"user_name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}

type ReqLogin struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

type ReqRegister struct {
	Name     string `json:"name"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
}
