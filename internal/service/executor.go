// internal/service/executor.go
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/memberhub/campaign-engine/internal/model"
	"github.com/memberhub/campaign-engine/internal/sender"
)

// ReasonNoChannel is the recipient-level failure reason when a record carries
// neither an email address nor a phone number.
const ReasonNoChannel = "no email or phone number available"

// DeliveryOutcome is the folded, recipient-level result of one delivery
// attempt. By the time an outcome leaves the executor, channel errors are
// data, not errors.
type DeliveryOutcome struct {
	Identifier string `json:"identifier"`
	Success    bool   `json:"success"`
	EmailOK    bool   `json:"email_ok"`
	SMSOK      bool   `json:"sms_ok"`
	Reason     string `json:"reason,omitempty"`
}

// DeliveryExecutor attempts every applicable channel for one recipient
// independently and folds the per-channel results into one outcome. A failure
// on one channel never prevents attempting the other.
type DeliveryExecutor struct {
	Email sender.EmailSender
	SMS   sender.SMSSender
}

func NewDeliveryExecutor(email sender.EmailSender, sms sender.SMSSender) *DeliveryExecutor {
	return &DeliveryExecutor{Email: email, SMS: sms}
}

// Attempt delivers the campaign message to one recipient. Email applies when
// the record has an address; SMS applies when the record has a number and the
// campaign type allows the SMS channel. The recipient is "reached" when at
// least one attempted channel succeeds.
func (e *DeliveryExecutor) Attempt(ctx context.Context, c *model.Campaign, r model.Recipient) DeliveryOutcome {
	outcome := DeliveryOutcome{Identifier: r.Identifier()}

	tryEmail := r.Email != "" && e.Email != nil
	trySMS := r.Phone != "" && c.Type.AllowsSMS() && e.SMS != nil

	if !tryEmail && !trySMS {
		outcome.Reason = ReasonNoChannel
		return outcome
	}

	subject := Personalize(c.Subject, r)
	body := Personalize(c.MessageBody, r)

	var wg sync.WaitGroup
	var emailErr, smsErr error

	if tryEmail {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emailErr = e.Email.Send(ctx, r.Email, subject, body)
		}()
	}

	if trySMS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			smsErr = e.SMS.Send(ctx, r.Phone, body)
		}()
	}

	wg.Wait()

	outcome.EmailOK = tryEmail && emailErr == nil
	outcome.SMSOK = trySMS && smsErr == nil
	outcome.Success = outcome.EmailOK || outcome.SMSOK

	if !outcome.Success {
		var reasons []string
		if emailErr != nil {
			reasons = append(reasons, "email: "+emailErr.Error())
		}
		if smsErr != nil {
			reasons = append(reasons, "sms: "+smsErr.Error())
		}
		outcome.Reason = strings.Join(reasons, "; ")
	}

	return outcome
}
