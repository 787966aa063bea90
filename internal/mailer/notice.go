package mailer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Notice is one outbound notification. The set of implementations below is
// closed: each kind carries exactly the fields its template needs, so a
// malformed dispatch is a compile error rather than a runtime lookup miss.
type Notice interface {
	Kind() string
	Recipient() string
	Subject() string
	Body() string
}

// PaymentVerification confirms a first successful entry payment.
type PaymentVerification struct {
	To            string
	Name          string
	ReferenceCode string
	RenewalDue    time.Time
}

func (n PaymentVerification) Kind() string      { return "payment_verification" }
func (n PaymentVerification) Recipient() string { return n.To }
func (n PaymentVerification) Subject() string   { return "Welcome to DrawWin - payment received" }
func (n PaymentVerification) Body() string {
	return fmt.Sprintf(
		"Hi %s,\n\nYour entry payment was received and your membership is active.\n\nYour reference code: %s\nShare it with friends so they can enter with your referral.\n\nYour next renewal is due on %s.\n\nGood luck!\nThe DrawWin team",
		n.Name, n.ReferenceCode, n.RenewalDue.Format("02 Jan 2006"))
}

// RenewalConfirmation confirms a renewal payment on an existing entry.
type RenewalConfirmation struct {
	To            string
	Name          string
	ReferenceCode string
	RenewalDue    time.Time
	EntryCount    int
}

func (n RenewalConfirmation) Kind() string      { return "renewal_notification" }
func (n RenewalConfirmation) Recipient() string { return n.To }
func (n RenewalConfirmation) Subject() string   { return "DrawWin membership renewed" }
func (n RenewalConfirmation) Body() string {
	return fmt.Sprintf(
		"Hi %s,\n\nYour renewal payment was received. Your membership is active again.\n\nReference code: %s (unchanged)\nTotal entries so far: %d\nNext renewal due: %s\n\nGood luck!\nThe DrawWin team",
		n.Name, n.ReferenceCode, n.EntryCount, n.RenewalDue.Format("02 Jan 2006"))
}

// RenewalReminder is sent when an entry expires in the monthly reset.
type RenewalReminder struct {
	To            string
	Name          string
	ReferenceCode string
}

func (n RenewalReminder) Kind() string      { return "renewal_reminder" }
func (n RenewalReminder) Recipient() string { return n.To }
func (n RenewalReminder) Subject() string   { return "Your DrawWin membership has expired" }
func (n RenewalReminder) Body() string {
	return fmt.Sprintf(
		"Hi %s,\n\nA new draw period has started and your membership (reference %s) has expired.\nRenew now to stay in the running - your reference code stays the same.\n\nThe DrawWin team",
		n.Name, n.ReferenceCode)
}

// WinnerAnnouncement tells a member they were selected.
type WinnerAnnouncement struct {
	To            string
	Name          string
	ReferenceCode string
	Amount        decimal.Decimal
}

func (n WinnerAnnouncement) Kind() string      { return "winner_announcement" }
func (n WinnerAnnouncement) Recipient() string { return n.To }
func (n WinnerAnnouncement) Subject() string   { return "Congratulations - you won the DrawWin draw!" }
func (n WinnerAnnouncement) Body() string {
	return fmt.Sprintf(
		"Hi %s,\n\nCongratulations! Your entry %s was selected as this draw's winner.\nWinning amount: %s\n\nWe will be in touch about the payout shortly.\n\nThe DrawWin team",
		n.Name, n.ReferenceCode, n.Amount.StringFixed(2))
}

// WithdrawalReceived acknowledges a refund request.
type WithdrawalReceived struct {
	To           string
	Name         string
	RefundAmount decimal.Decimal
}

func (n WithdrawalReceived) Kind() string      { return "withdrawal_received" }
func (n WithdrawalReceived) Recipient() string { return n.To }
func (n WithdrawalReceived) Subject() string   { return "DrawWin withdrawal request received" }
func (n WithdrawalReceived) Body() string {
	return fmt.Sprintf(
		"Hi %s,\n\nWe received your withdrawal request. After the service charge your refund amount is %s.\nWe will review it and get back to you.\n\nThe DrawWin team",
		n.Name, n.RefundAmount.StringFixed(2))
}

// InquiryReply carries an admin's answer to a contact-form inquiry.
type InquiryReply struct {
	To      string
	Name    string
	Topic   string
	Message string
}

func (n InquiryReply) Kind() string      { return "inquiry_reply" }
func (n InquiryReply) Recipient() string { return n.To }
func (n InquiryReply) Subject() string {
	if n.Topic == "" {
		return "Re: your DrawWin inquiry"
	}
	return "Re: " + n.Topic
}
func (n InquiryReply) Body() string {
	return fmt.Sprintf("Hi %s,\n\n%s\n\nThe DrawWin team", n.Name, n.Message)
}
