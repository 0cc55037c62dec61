package models

import "time"

// Lead is a captured contact submission tied to one estimation request.
type Lead struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Address           string    `json:"address"`
	PropertyType      string    `json:"property_type"`
	Project           string    `json:"project"`
	Condition         string    `json:"condition"`
	Surface           float64   `json:"surface"`
	Estimate          *float64  `json:"estimate"`
	AskingPrice       float64   `json:"asking_price"`
	CallbackRequested bool      `json:"callback_requested"`
	CreatedAt         time.Time `json:"created_at"`
}

// LeadFilter narrows admin lead listings.
type LeadFilter struct {
	Project      string `form:"project"`
	CallbackOnly bool   `form:"callbackOnly"`
	StartDate    string `form:"startDate"`
	EndDate      string `form:"endDate"`
}
