package bookeo

import "encoding/json"

// Money is an amount/currency pair as Bookeo returns it; amounts are
// decimal strings and are never reinterpreted as floats.
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Price struct {
	TotalGross *Money `json:"totalGross"`
	TotalNet   *Money `json:"totalNet"`
	TotalPaid  *Money `json:"totalPaid"`
}

type PhoneNumber struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

type Customer struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"firstName"`
	MiddleName   string        `json:"middleName"`
	LastName     string        `json:"lastName"`
	EmailAddress string        `json:"emailAddress"`
	PhoneNumbers []PhoneNumber `json:"phoneNumbers"`
}

type ParticipantNumber struct {
	PeopleCategoryID string `json:"peopleCategoryId"`
	Number           int    `json:"number"`
}

type Participants struct {
	Numbers []ParticipantNumber `json:"numbers"`
}

type Resource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Option struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Booking is one upstream booking record. Every field is optional except
// BookingNumber, which is the natural key downstream. Raw holds the exact
// bytes the record arrived as and survives all the way to the destination
// store.
type Booking struct {
	BookingNumber   string        `json:"bookingNumber"`
	EventID         string        `json:"eventId"`
	Title           string        `json:"title"`
	ProductName     string        `json:"productName"`
	ProductID       string        `json:"productId"`
	CustomerID      string        `json:"customerId"`
	StartTime       string        `json:"startTime"`
	EndTime         string        `json:"endTime"`
	CreationTime    string        `json:"creationTime"`
	CreationAgent   string        `json:"creationAgent"`
	LastChangeTime  string        `json:"lastChangeTime"`
	LastChangeAgent string        `json:"lastChangeAgent"`
	CancelationTime string        `json:"cancelationTime"`
	SourceIP        string        `json:"sourceIp"`
	Source          string        `json:"source"`
	ExternalRef     string        `json:"externalRef"`
	Canceled        bool          `json:"canceled"`
	Accepted        *bool         `json:"accepted"`
	NoShow          bool          `json:"noShow"`
	PrivateEvent    bool          `json:"privateEvent"`
	Customer        *Customer     `json:"customer"`
	Participants    *Participants `json:"participants"`
	Price           *Price        `json:"price"`
	Resources       []Resource    `json:"resources"`
	Options         []Option      `json:"options"`

	Raw json.RawMessage `json:"-"`
}

// IsAccepted applies the upstream default: a booking with no accepted
// field is accepted.
func (b Booking) IsAccepted() bool {
	if b.Accepted == nil {
		return true
	}
	return *b.Accepted
}

type Webhook struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
}
