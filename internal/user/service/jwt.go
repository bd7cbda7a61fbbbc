package service

import (
	"time"

	"blockmarket/pkg/jwt"
)

// JWTManager выдаёт сессионные токены для подтверждённых кошельков
type JWTManager struct {
	SecretKey string
	TTL       time.Duration
}

func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{SecretKey: secret, TTL: jwt.DefaultTTL}
}

func (j *JWTManager) Generate(userID int64, address string) (string, error) {
	return jwt.GenerateToken(j.SecretKey, userID, address, j.TTL)
}
