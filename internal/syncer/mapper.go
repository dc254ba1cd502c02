package syncer

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/store"
)

// Destination column limits. Overlong values are truncated, never
// rejected.
const (
	maxKeyLen    = 64
	maxIDLen     = 128
	maxNameLen   = 256
	maxTitleLen  = 512
	maxAgentLen  = 255
	maxPhoneLen  = 64
	maxIPLen     = 45
	maxMoneyLen  = 20
	maxCcyLen    = 10
	maxListLen   = 1024
	storedTSLen  = 19
	storedLayout = "2006-01-02 15:04:05"
)

// MapBooking flattens one upstream booking into a destination row. The
// second return is false when the booking has no bookingNumber; such
// records are dropped, never persisted. Everything else is lenient: a
// field that cannot be parsed degrades to a best-effort value and the row
// still goes through.
func MapBooking(b bookeo.Booking) (store.Row, bool) {
	bookingNumber := strings.TrimSpace(b.BookingNumber)
	if bookingNumber == "" {
		return store.Row{}, false
	}

	row := store.Row{
		BookingNumber:     truncate(bookingNumber, maxKeyLen),
		EventID:           truncate(b.EventID, maxIDLen),
		ProductID:         truncate(b.ProductID, maxIDLen),
		ProductName:       truncate(b.ProductName, maxNameLen),
		Title:             truncate(b.Title, maxTitleLen),
		StartTime:         normalizeTimestamp(b.StartTime),
		EndTime:           normalizeTimestamp(b.EndTime),
		CustomerID:        truncate(b.CustomerID, maxIDLen),
		Canceled:          b.Canceled,
		Accepted:          b.IsAccepted(),
		NoShow:            b.NoShow,
		PrivateEvent:      b.PrivateEvent,
		CancelationTime:   normalizeTimestamp(b.CancelationTime),
		CreationTime:      normalizeTimestamp(b.CreationTime),
		CreationAgent:     truncate(b.CreationAgent, maxAgentLen),
		LastChangeTime:    normalizeTimestamp(b.LastChangeTime),
		LastChangeAgent:   truncate(b.LastChangeAgent, maxAgentLen),
		SourceIP:          truncate(b.SourceIP, maxIPLen),
		Source:            truncate(b.Source, maxIDLen),
		ExternalRef:       truncate(b.ExternalRef, maxIDLen),
		Resources:         truncate(resourceList(b.Resources), maxListLen),
		Options:           truncate(optionList(b.Options), maxListLen),
		TotalParticipants: participantTotal(b.Participants),
		RawJSON:           string(b.Raw),
	}

	if b.Customer != nil {
		row.CustomerName = truncate(customerName(*b.Customer), maxNameLen)
		row.CustomerEmail = truncate(b.Customer.EmailAddress, maxNameLen)
		row.CustomerPhone = truncate(customerPhone(*b.Customer), maxPhoneLen)
		if row.CustomerID == "" {
			row.CustomerID = truncate(b.Customer.ID, maxIDLen)
		}
	}

	if b.Price != nil {
		if b.Price.TotalGross != nil {
			row.TotalGross = truncate(b.Price.TotalGross.Amount, maxMoneyLen)
		}
		if b.Price.TotalNet != nil {
			row.TotalNet = truncate(b.Price.TotalNet.Amount, maxMoneyLen)
		}
		if b.Price.TotalPaid != nil {
			row.TotalPaid = truncate(b.Price.TotalPaid.Amount, maxMoneyLen)
		}
		row.Currency = truncate(priceCurrency(*b.Price), maxCcyLen)
	}

	return row, true
}

// normalizeTimestamp converts an RFC3339 value (Z or explicit offset) to
// second-precision UTC without offset. Unparsable values pass through as a
// literal prefix so one bad field never sinks the row.
func normalizeTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format(storedLayout)
	}
	return truncate(value, storedTSLen)
}

// truncate cuts at a rune boundary so a multi-byte character straddling the
// limit never produces invalid UTF-8, which Postgres would reject.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}

func customerName(c bookeo.Customer) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{c.FirstName, c.MiddleName, c.LastName} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, " ")
}

func customerPhone(c bookeo.Customer) string {
	for _, phone := range c.PhoneNumbers {
		if strings.TrimSpace(phone.Number) != "" {
			return strings.TrimSpace(phone.Number)
		}
	}
	return ""
}

func participantTotal(p *bookeo.Participants) int {
	if p == nil {
		return 0
	}
	total := 0
	for _, n := range p.Numbers {
		total += n.Number
	}
	return total
}

// priceCurrency takes the currency from whichever total is present first,
// preferring gross.
func priceCurrency(p bookeo.Price) string {
	for _, money := range []*bookeo.Money{p.TotalGross, p.TotalNet, p.TotalPaid} {
		if money != nil && strings.TrimSpace(money.Currency) != "" {
			return strings.TrimSpace(money.Currency)
		}
	}
	return ""
}

func resourceList(resources []bookeo.Resource) string {
	var names []string
	for _, r := range resources {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = strings.TrimSpace(r.ID)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func optionList(options []bookeo.Option) string {
	var parts []string
	for _, o := range options {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			name = strings.TrimSpace(o.ID)
		}
		value := strings.TrimSpace(o.Value)
		switch {
		case name != "" && value != "":
			parts = append(parts, name+": "+value)
		case name != "":
			parts = append(parts, name)
		case value != "":
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, "; ")
}
