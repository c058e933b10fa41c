package domain

// Audit log action labels
const (
	AuditCreated          = "Invoice Created"
	AuditSubmitted        = "Submitted for Approval"
	AuditApproved         = "Approved"
	AuditRejected         = "Rejected"
	AuditOnHold           = "Put On Hold"
	AuditAcknowledged     = "Acknowledged"
	AuditResubmitted      = "Resubmitted for Approval"
	AuditSent             = "Sent to Client"
	AuditDelivered        = "Delivered to Client"
	AuditViewed           = "Viewed by Client"
	AuditDeliveryFailed   = "Delivery Failed"
	AuditResent           = "Resent to Client"
	AuditMarkedDelivered  = "Marked as Delivered"
	AuditMarkedFailed     = "Marked as Failed"
	AuditMarkedPending    = "Marked as Pending"
	AuditMarkedOpened     = "Marked as Opened"
	AuditAutoNumberFormat = "INV-AUTO-%04d"
)
