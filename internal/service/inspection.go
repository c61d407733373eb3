package service

import (
	"fmt"
	"math"
	"strings"

	"sparkclean/internal/models"
)

// InspectionBaseFee is the price of an inspection before room and urgency
// adjustments.
const InspectionBaseFee = 150.0

var urgencyMultipliers = map[string]float64{
	models.UrgencyStandard:  1.0,
	models.UrgencyUrgent:    1.5,
	models.UrgencyEmergency: 2.0,
}

// EstimateInspection prices an inspection at the base fee scaled by a tenth
// per room and by the urgency multiplier, rounded to a whole amount. With no
// rooms the room factor is 1. An empty urgency means standard.
func EstimateInspection(rooms models.InspectionRooms, urgency string) (float64, error) {
	if rooms.Kitchens < 0 || rooms.Bathrooms < 0 || rooms.Bedrooms < 0 || rooms.LivingRooms < 0 {
		return 0, invalid("must not be negative", "rooms")
	}
	if urgency == "" {
		urgency = models.UrgencyStandard
	}
	multiplier, ok := urgencyMultipliers[urgency]
	if !ok {
		return 0, invalid("must be standard, urgent or emergency", "urgency")
	}

	// Multiply before dividing so 7 rooms give exactly 105.
	base := InspectionBaseFee
	if total := rooms.Total(); total > 0 {
		base = InspectionBaseFee * float64(total) / 10
	}
	return math.Round(base * multiplier), nil
}

// InspectionInstructions renders the room breakdown stored with the booking.
func InspectionInstructions(req models.InspectionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kitchens: %d, Bathrooms: %d, Bedrooms: %d, Living Rooms: %d",
		req.Rooms.Kitchens, req.Rooms.Bathrooms, req.Rooms.Bedrooms, req.Rooms.LivingRooms)
	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyStandard
	}
	fmt.Fprintf(&b, "\nUrgency: %s", urgency)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", notes)
	}
	return b.String()
}
