package orders

// Status is the fulfilment lifecycle, driven by back-office and the fulfillment consumer.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentPaid: true, PaymentFailed: true, PaymentRefunded: true},
	PaymentPaid:     {},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}

// PaymentMethod selects on-delivery payment or one of the mobile-money providers.
type PaymentMethod string

const (
	MethodWave   PaymentMethod = "wave"
	MethodOrange PaymentMethod = "orange"
	MethodCash   PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case MethodWave, MethodOrange, MethodCash:
		return m, true
	}
	return "", false
}

// Online reports whether the method goes through an external provider.
func (m PaymentMethod) Online() bool { return m == MethodWave || m == MethodOrange }
