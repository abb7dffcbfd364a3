package reporting

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mcmanager/milkledger/internal/domain/models"
)

const shareBaseURL = "https://wa.me/"

// Statement is a member's billing statement ready to be shared.
type Statement struct {
	Member  models.Member
	Phone   string
	Message string
	Link    string
	PDF     File
}

// StatementMessage renders the text that accompanies the passbook PDF.
func StatementMessage(pb *Passbook, start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", pb.Member.NameEn)
	fmt.Fprintf(&b, "Your milk collection billing statement for the period %s - %s is attached.\n\n", shortDate(start), shortDate(end))
	b.WriteString("*Summary:*\n")
	fmt.Fprintf(&b, "Total Amount: ₹%.2f\n", pb.Summary.Billed)
	fmt.Fprintf(&b, "Previous Due: ₹%.2f\n", pb.Summary.PrevDue)
	fmt.Fprintf(&b, "Paid: ₹%.2f\n", pb.Summary.Paid)
	fmt.Fprintf(&b, "Due Amount: ₹%.2f\n\n", pb.Summary.Due)
	b.WriteString("Thank you for your business!")
	return b.String()
}

// ShareLink builds a wa.me link that opens a chat with message prefilled.
// Spaces are encoded as %20; WhatsApp shows a literal '+' otherwise.
func ShareLink(phone, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message+"\n\n(PDF will be sent separately)"), "+", "%20")
	return shareBaseURL + phone + "?text=" + text
}

// Statement prepares the member's statement for the period: the passbook
// PDF, the message and the share link.
func (s *Service) Statement(ctx context.Context, start time.Time, custNo int) (*Statement, error) {
	file, pb, err := s.PassbookPDF(ctx, start, custNo)
	if err != nil {
		return nil, err
	}

	phone := models.NormalizePhone(pb.Member.MobileNo, s.countryCode)
	if phone == "" {
		return nil, fmt.Errorf("custNo %d: %w", custNo, ErrNoMobile)
	}

	end, err := parseDate(pb.Period.End)
	if err != nil {
		return nil, fmt.Errorf("period end: %w", err)
	}
	msg := StatementMessage(pb, start, end)
	return &Statement{
		Member:  pb.Member,
		Phone:   phone,
		Message: msg,
		Link:    ShareLink(phone, msg),
		PDF:     file,
	}, nil
}
