// Package events defines the domain events the scenario host emits and the
// publishers that deliver them.
//
// Events are notifications for external subscribers (dashboards, match
// services, bots). The host never reads them back, so a failed publish is
// logged and otherwise ignored.
package events
