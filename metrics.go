// Prometheus instrumentation for the matchmaking funnel: how many cards we
// serve, how requests resolve, and how often both sides say yes.
package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// potentialMatchesServed counts match cards returned to users.
	potentialMatchesServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urbane_potential_matches_served_total",
		Help: "Total number of match cards returned to users",
	})

	// friendRequestsTotal counts friend-request calls by resulting status.
	friendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "urbane_friend_requests_total",
		Help: "Total number of friend requests by resulting status",
	}, []string{"status"}) // status = "pending", "accepted"

	// mutualMatchesTotal counts pairs where both users said yes.
	mutualMatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urbane_mutual_matches_total",
		Help: "Total number of mutual matches",
	})

	// rejectionsTotal counts reject/skip decisions.
	rejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urbane_rejections_total",
		Help: "Total number of rejections and skips",
	})

	// eventRSVPsTotal counts successful event joins.
	eventRSVPsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urbane_event_rsvps_total",
		Help: "Total number of successful event RSVPs",
	})
)

func init() {
	prometheus.MustRegister(
		potentialMatchesServed,
		friendRequestsTotal,
		mutualMatchesTotal,
		rejectionsTotal,
		eventRSVPsTotal,
	)
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
