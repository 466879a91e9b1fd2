package api

import (
	"github.com/go-playground/validator/v10"

	"marketbook/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Namespace()] = err.Tag()
	}
	return details
}

type windowQuery struct {
	StartDate  string `validate:"omitempty,date"`
	EndDate    string `validate:"omitempty,date"`
	ResourceID string `validate:"omitempty,max=64"`
}

type checkInSlotBody struct {
	Date           string `json:"date" validate:"required,date"`
	StartTime      string `json:"startTime" validate:"required,clock"`
	EndTime        string `json:"endTime" validate:"required,clock"`
	MarketMemberID string `json:"marketMemberId" validate:"omitempty,max=64"`
}

type checkInBody struct {
	Slots []checkInSlotBody `json:"slots" validate:"dive"`
}

type exclusionBody struct {
	Date  string `json:"date" validate:"required,date"`
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

type statusBody struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed canceled rejected"`
}
