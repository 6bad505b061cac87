// Package alerts implements the rule evaluation engine and webhook delivery
// for motor alerting. Rules are evaluated against every ingested reading;
// webhooks are delivered to Teams, Slack, or generic HTTP targets.
package alerts
