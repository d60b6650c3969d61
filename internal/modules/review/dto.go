package review

type CreateReviewRequest struct {
	BookingID int64  `json:"booking_id" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment,omitempty" validate:"max=2000"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected hidden"`
}

type UpdateRatingRequest struct {
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}
