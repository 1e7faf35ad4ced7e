// Package mailer turns crossing decisions into the user-facing quota
// notification email and delivers it.
package mailer

import (
	"fmt"
	"strings"

	"github.com/quotamail/quotamail/internal/models"
)

const (
	bodyHeader = "You receive this email because you recently exceeded a threshold related to the quotas of your email account."

	bodyFooter = "You need to be aware that actions leading to exceeded quotas will be denied. This will result in a degraded service.\n" +
		"To mitigate this issue you might reach your administrator in order to increase your configured quota. You might also delete some non important emails."

	// DefaultSubject is used unless the installation configures its own.
	DefaultSubject = "Warning: Your email usage just exceeded a limit"
)

// Compose combines the per-dimension crossing decisions of a single usage
// update into at most one email body. Only dimensions that just crossed a
// non-zero threshold contribute a section; when neither did, ok is false and
// no email must be sent. Sections render in fixed order, size before count,
// separated by single blank lines.
func Compose(update models.UsageUpdate, size, count models.Crossing) (body string, ok bool) {
	sections := []string{bodyHeader}

	if size.Notifiable() {
		sections = append(sections, fmt.Sprintf(
			"You currently occupy more than %d %% of the total size allocated to you.\n"+
				"You currently occupy %d bytes on a total of %d bytes allocated to you.",
			size.Threshold.Percent(), update.SizeUsed, update.SizeLimit))
	}

	if count.Notifiable() {
		sections = append(sections, fmt.Sprintf(
			"You currently occupy more than %d %% of the total message count allocated to you.\n"+
				"You currently have %d messages on a total of %d allowed for you.",
			count.Threshold.Percent(), update.CountUsed, update.CountLimit))
	}

	if len(sections) == 1 {
		return "", false
	}

	sections = append(sections, bodyFooter)
	return strings.Join(sections, "\n\n"), true
}
