// Package events carries typed feeds the engine fires after mutations
// commit. Subscribers (the web daemon's websocket broadcaster, the
// metrics reporter) attach with feed.Subscribe and receive payloads
// synchronously at the end of each mutation.
package events

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// ActivityStored is emitted for every activity successfully persisted,
// after its signature is built and its group membership settled.
var ActivityStored = event.FeedOf[*activity.Activity]{}

// ActivityRemoved carries the id of an activity that was deleted and
// whose derived state has been cascaded.
var ActivityRemoved = event.FeedOf[string]{}

// GroupsChanged is emitted with the full group set whenever grouping
// output changes, whether from an incremental join or a rebuild.
var GroupsChanged = event.FeedOf[[]*route.Group]{}

// SectionsDetected is emitted when a background detection run
// completes and its results have been persisted.
var SectionsDetected = event.FeedOf[*section.MultiScaleResult]{}

// ResetAll is emitted after Clear wipes the engine. Subscribers drop
// any state derived from earlier events.
var ResetAll = event.FeedOf[struct{}]{}
