package newsletterservice

import "github.com/sushihentaime/devlog/internal/common"

func validateEmail(v *common.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(len(email) <= 254, "email", "must not be more than 254 characters long")
	v.Check(common.EmailRX.MatchString(email), "email", "must be a valid email address")
}

func validateConsent(v *common.Validator, consent bool) {
	v.Check(consent, "consent", "you must agree to receive emails to continue")
}

func validateToken(v *common.Validator, token string) {
	v.Check(token != "", "token", "must be provided")
	v.Check(common.UUIDRX.MatchString(token), "token", "invalid token format")
}

func validateStatus(v *common.Validator, status Status) {
	if status != "" {
		v.Check(common.PermittedValue(status, StatusPending, StatusConfirmed, StatusUnsubscribed), "status", "must be one of pending, confirmed or unsubscribed")
	}
}
