package request

type ConfirmJob struct {
	UserID string `json:"user_id" validate:"required,uuid" example:"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11"`
}

type CancelJob struct {
	UserID string `json:"user_id" validate:"required,uuid" example:"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11"`
	Reason string `json:"reason" validate:"required,max=500" example:"sold in person"`
}
