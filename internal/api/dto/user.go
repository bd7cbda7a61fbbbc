package dto

type LoginRequest struct {
	Address string `json:"address" validate:"required,ethaddr"`
}

type VerifyRequest struct {
	Address   string `json:"address" validate:"required,ethaddr"`
	Signature string `json:"signature" validate:"required,hexsig"`
	NonceHash string `json:"nonceHash" validate:"required"`
}
