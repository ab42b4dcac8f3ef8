package webd

import (
	"encoding/json"
	"log/slog"

	"github.com/olahol/melody"

	"github.com/rotblauer/routecat/events"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

type websocketAction string

const (
	actionActivityStored  websocketAction = "activity_stored"
	actionActivityRemoved websocketAction = "activity_removed"
	actionGroupsChanged   websocketAction = "groups_changed"
	actionSectionsUpdated websocketAction = "sections_updated"
	actionReset           websocketAction = "reset"
)

type broadcast struct {
	Action  websocketAction `json:"action"`
	Payload any             `json:"payload"`
}

// initMelody sets up the websocket handler and bridges engine feeds to
// connected clients.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Info("websocket connected", "remote", sess.Request.RemoteAddr)
	})

	// Incoming messages from clients are logged and dropped.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("websocket message", "msg", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("websocket error", "error", e, "remote", sess.Request.RemoteAddr)
	})

	stored := make(chan *activity.Activity, 8)
	removed := make(chan string, 8)
	grouped := make(chan []*route.Group, 8)
	detected := make(chan *section.MultiScaleResult, 8)
	reset := make(chan struct{}, 8)

	storedSub := events.ActivityStored.Subscribe(stored)
	removedSub := events.ActivityRemoved.Subscribe(removed)
	groupedSub := events.GroupsChanged.Subscribe(grouped)
	detectedSub := events.SectionsDetected.Subscribe(detected)
	resetSub := events.ResetAll.Subscribe(reset)

	go func() {
		defer storedSub.Unsubscribe()
		defer removedSub.Unsubscribe()
		defer groupedSub.Unsubscribe()
		defer detectedSub.Unsubscribe()
		defer resetSub.Unsubscribe()
		for {
			select {
			case act := <-stored:
				// Strip the track, clients fetch it on demand.
				s.broadcast(actionActivityStored, map[string]any{
					"id": act.ID, "sport": act.Sport, "points": len(act.Track),
				})
			case id := <-removed:
				s.broadcast(actionActivityRemoved, map[string]string{"id": id})
			case groups := <-grouped:
				s.broadcast(actionGroupsChanged, groups)
			case result := <-detected:
				s.broadcast(actionSectionsUpdated, map[string]any{
					"sections": len(result.Sections), "potentials": len(result.Potentials),
				})
			case <-reset:
				s.broadcast(actionReset, nil)
			case err := <-storedSub.Err():
				slog.Error("Event subscription failed", "error", err)
				return
			}
		}
	}()
}

func (s *WebDaemon) broadcast(action websocketAction, payload any) {
	b, err := json.Marshal(broadcast{Action: action, Payload: payload})
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", "action", action, "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(b); err != nil {
		s.logger.Warn("Failed to broadcast", "action", action, "error", err)
	}
}
