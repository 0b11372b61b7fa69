package realtime

import "encoding/json"

// Room names. Every connection joins RoomCampaign and its own UserRoom.
const (
	RoomCampaign  = "campaign"
	RoomBattlemap = "battlemap"
)

// UserRoom is the private room of one user, used for direct delivery.
func UserRoom(username string) string {
	return "user_" + username
}

// Inbound events sent by clients.
const (
	EventSendMessage    = "send_message"
	EventDiceRoll       = "dice_roll"
	EventJoinBattlemap  = "join_battlemap"
	EventLeaveBattlemap = "leave_battlemap"
	EventSecretMessage  = "secret_message"
)

// Outbound events published by the server.
const (
	EventNewMessage        = "new_message"
	EventCharacterUpdate   = "character_update"
	EventCampaignUpdate    = "campaign_update"
	EventFileUploaded      = "file_uploaded"
	EventQuestUpdate       = "quest_update"
	EventNPCUpdate         = "npc_update"
	EventPurseUpdate       = "purse_update"
	EventCombatStarted     = "combat_started"
	EventCombatTurnChanged = "combat_turn_changed"
	EventCombatEnded       = "combat_ended"
	EventHPUpdated         = "hp_updated"
	EventTokenMoved        = "token_moved"
	EventBattlemapState    = "battlemap_state"
	EventStatus            = "status"
	EventError             = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Publisher fans an event out to every member of a room. Delivery is best-effort.
type Publisher interface {
	Publish(room, event string, data any)
}

// ErrorPayload is sent to the failing caller only.
type ErrorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// StatusPayload announces presence changes.
type StatusPayload struct {
	Msg string `json:"msg"`
}
