package events

// Topics emitted by the marketplace.
const (
	TopicOrderCreated      = "order.created"
	TopicFeeMarkedPaid     = "fee.marked_paid"
	TopicFeeMarkedUnpaid   = "fee.marked_unpaid"
	TopicAuthorBlocked     = "author.blocked"
	TopicAuthorUnblocked   = "author.unblocked"
	TopicBookStatusChanged = "book.status_changed"
	TopicUserRegistered    = "user.registered"
)
