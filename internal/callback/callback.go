// Package callback defines the typed intents carried in Telegram callback
// data. Data is decoded once at the transport boundary into an Intent and
// dispatched by kind; handlers never sniff string prefixes themselves.
package callback

import (
	"strconv"
	"strings"
)

// Kind enumerates every button intent the bot issues.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelectLine
	KindSelectVehicle
	KindVehicleManual
	KindSelectStation
	KindSelectDirection
	KindSelectTime
	KindPublishReport
	KindCancelReport
	KindBanUser
	KindUnbanUser
	KindConfirmBroadcast
	KindCancelBroadcast
)

const (
	prefixLine      = "line:"
	prefixVehicle   = "vehicle:"
	vehicleManual   = "vehicle_manual"
	prefixStation   = "station:"
	prefixDirection = "direction:"
	prefixTime      = "time:"
	publishReport   = "report_publish"
	cancelReport    = "report_cancel"
	prefixBan       = "ban:"
	prefixUnban     = "unban:"
	prefixGongYes   = "gong_yes:"
	prefixGongNo    = "gong_no:"
)

// Intent is a decoded button press. Value carries the payload for kinds that
// have one: the selected option, the target user id, or the broadcast token.
type Intent struct {
	Kind  Kind
	Value string
}

// UserID parses the intent value as a Telegram user id.
func (i Intent) UserID() (int64, error) {
	return strconv.ParseInt(i.Value, 10, 64)
}

// Encode renders the intent as callback data.
func (i Intent) Encode() string {
	switch i.Kind {
	case KindSelectLine:
		return prefixLine + i.Value
	case KindSelectVehicle:
		return prefixVehicle + i.Value
	case KindVehicleManual:
		return vehicleManual
	case KindSelectStation:
		return prefixStation + i.Value
	case KindSelectDirection:
		return prefixDirection + i.Value
	case KindSelectTime:
		return prefixTime + i.Value
	case KindPublishReport:
		return publishReport
	case KindCancelReport:
		return cancelReport
	case KindBanUser:
		return prefixBan + i.Value
	case KindUnbanUser:
		return prefixUnban + i.Value
	case KindConfirmBroadcast:
		return prefixGongYes + i.Value
	case KindCancelBroadcast:
		return prefixGongNo + i.Value
	default:
		return ""
	}
}

// Decode parses callback data into an Intent. It reports false for data the
// bot never issued.
func Decode(data string) (Intent, bool) {
	switch {
	case data == vehicleManual:
		return Intent{Kind: KindVehicleManual}, true
	case data == publishReport:
		return Intent{Kind: KindPublishReport}, true
	case data == cancelReport:
		return Intent{Kind: KindCancelReport}, true
	}

	prefixes := []struct {
		prefix string
		kind   Kind
	}{
		{prefixLine, KindSelectLine},
		{prefixVehicle, KindSelectVehicle},
		{prefixStation, KindSelectStation},
		{prefixDirection, KindSelectDirection},
		{prefixTime, KindSelectTime},
		{prefixBan, KindBanUser},
		{prefixUnban, KindUnbanUser},
		{prefixGongYes, KindConfirmBroadcast},
		{prefixGongNo, KindCancelBroadcast},
	}

	for _, p := range prefixes {
		if value, ok := strings.CutPrefix(data, p.prefix); ok {
			return Intent{Kind: p.kind, Value: value}, true
		}
	}

	return Intent{}, false
}
