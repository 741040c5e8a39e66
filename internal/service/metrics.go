package service

import "github.com/prometheus/client_golang/prometheus"

var (
	codesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamdb", Name: "confirmation_codes_issued_total",
		Help: "Confirmation codes generated and handed to the mailer",
	})
	tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamdb", Name: "access_tokens_issued_total",
		Help: "Access tokens issued for a valid confirmation code",
	})
	invalidCodes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamdb", Name: "confirmation_codes_rejected_total",
		Help: "Token requests rejected because of a wrong or expired code",
	})
)

func init() { prometheus.MustRegister(codesIssued, tokensIssued, invalidCodes) }
