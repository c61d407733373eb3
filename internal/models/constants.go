package models

const (
	TableUsers              = "users"
	TableBookings           = "bookings"
	TableServices           = "services"
	TableContactMessages    = "contact_messages"
	TableAddresses          = "addresses"
	TablePickupDeliveries   = "pickup_deliveries"
	TableUserComplaints     = "user_complaints"
	TableSupportTickets     = "support_tickets"
	TableSupportMessages    = "support_messages"
	TableChatSessions       = "chat_sessions"
	TableChatMessages       = "chat_messages"
	TableAdminNotifications = "admin_notifications"
	TableGalleryImages      = "gallery_images"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

const (
	ChatActive  = "active"
	ChatWaiting = "waiting"
	ChatClosed  = "closed"
)

const (
	ContactNew     = "new"
	ContactRead    = "read"
	ContactReplied = "replied"
)

const (
	PickupScheduled      = "scheduled"
	PickupPickedUp       = "picked_up"
	PickupInCleaning     = "in_cleaning"
	PickupOutForDelivery = "out_for_delivery"
	PickupDelivered      = "delivered"
	PickupCancelled      = "cancelled"
)

const (
	ComplaintOpen          = "open"
	ComplaintInvestigating = "investigating"
	ComplaintResolved      = "resolved"
	ComplaintDismissed     = "dismissed"
)

const (
	ServiceTypeRegularCleaning    = "regular_cleaning"
	ServiceTypeDeepCleaning       = "deep_cleaning"
	ServiceTypeMoveInOut          = "move_in_out"
	ServiceTypeOfficeCleaning     = "office_cleaning"
	ServiceTypePropertyInspection = "property_inspection"
	ServiceTypeDryCleaning        = "dry_cleaning"
	ServiceTypeLaundry            = "laundry"
	ServiceTypeWashAndFold        = "wash_and_fold"
)

// LaundryServiceTypes are priced per item by the laundry desk; inspection price
// edits never touch them.
var LaundryServiceTypes = []string{
	ServiceTypeDryCleaning,
	ServiceTypeLaundry,
	ServiceTypeWashAndFold,
}

const (
	UrgencyStandard  = "standard"
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"
)

const (
	// DateLayout is the wire format of booking and pickup dates.
	DateLayout = "2006-01-02"

	// DefaultSessionTTL is in seconds.
	DefaultSessionTTL = 24 * 60 * 60

	LoginRateLimitAttempts = 10

	// LoginRateLimitWindow is in seconds.
	LoginRateLimitWindow = 15 * 60

	OutboxQueueSize = 1000

	// RealtimeBufferSize is per subscriber.
	RealtimeBufferSize = 256
)

// IsLaundryServiceType reports whether the service type is priced by the laundry desk.
func IsLaundryServiceType(serviceType string) bool {
	for _, t := range LaundryServiceTypes {
		if t == serviceType {
			return true
		}
	}
	return false
}
