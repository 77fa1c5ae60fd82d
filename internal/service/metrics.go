package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviews_submitted_total",
			Help: "Total number of reviews accepted for moderation",
		},
	)

	reviewsModerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_moderated_total",
			Help: "Total number of moderation decisions by action",
		},
		[]string{"action"},
	)

	inviteVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_invite_verifications_total",
			Help: "Total number of invite token verifications by result",
		},
		[]string{"result"},
	)

	reviewReports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_reports_total",
			Help: "Total number of accepted review reports",
		},
	)
)
