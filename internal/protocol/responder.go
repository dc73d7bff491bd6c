package protocol

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skywatch/altaz-mount/internal/controller"
	"github.com/skywatch/altaz-mount/internal/metrics"
	"github.com/skywatch/altaz-mount/internal/motor"
	"github.com/skywatch/altaz-mount/internal/skymath"
)

// defaultReply is the LX200 boolean-success reply for set-style verbs.
const defaultReply = "1"

// slewPossible/slewImpossible are the move-slew reply codes.
const (
	slewPossible   = "0"
	slewImpossible = "1"
)

// replySeparator joins the multi-line SC reply.
const replySeparator = "\n"

// handler processes one verb's command line (the data after the verb,
// if hasArg) and returns the reply to write back, if any.
type handler func(r *Responder, ctx context.Context, data string) string

// dispatch maps verb to its handler, following Lx200CommandResponder's
// dispatch_dict shape — (func, has_arg) pairs looked up by verb prefix.
var dispatch = map[string]handler{
	"CM":  func(r *Responder, ctx context.Context, _ string) string { return r.sync() },
	"Gc":  func(r *Responder, ctx context.Context, _ string) string { return "(24)#" },
	"GC":  func(r *Responder, ctx context.Context, _ string) string { return r.getCurrentDate() },
	"GD":  func(r *Responder, ctx context.Context, _ string) string { return r.getDec() },
	"Gg":  func(r *Responder, ctx context.Context, _ string) string { return r.getSiteLongitude() },
	"GG":  func(r *Responder, ctx context.Context, _ string) string { return r.getUTCOffset() },
	"GL":  func(r *Responder, ctx context.Context, _ string) string { return r.getLocalTime() },
	"GM":  func(r *Responder, ctx context.Context, _ string) string { return "Site 1#" },
	"GR":  func(r *Responder, ctx context.Context, _ string) string { return r.getRA() },
	"Gt":  func(r *Responder, ctx context.Context, _ string) string { return r.getSiteLatitude() },
	"GT":  func(r *Responder, ctx context.Context, _ string) string { return "60.0#" },
	"GVD": func(r *Responder, ctx context.Context, _ string) string { return "Jul 30 2026#" },
	"GVF": func(r *Responder, ctx context.Context, _ string) string { return "Phidgets|A|43Eg|Jul 30 2026@00:00:00#" },
	"GVN": func(r *Responder, ctx context.Context, _ string) string { return "1.0#" },
	"GVP": func(r *Responder, ctx context.Context, _ string) string { return "Phidgets#" },
	"GVT": func(r *Responder, ctx context.Context, _ string) string { return "00:00:00#" },
	"Mn":  func(r *Responder, ctx context.Context, _ string) string { return r.slewInDirection(ctx, controller.North) },
	"Me":  func(r *Responder, ctx context.Context, _ string) string { return r.slewInDirection(ctx, controller.East) },
	"Ms":  func(r *Responder, ctx context.Context, _ string) string { return r.slewInDirection(ctx, controller.South) },
	"Mw":  func(r *Responder, ctx context.Context, _ string) string { return r.slewInDirection(ctx, controller.West) },
	"MS":  func(r *Responder, ctx context.Context, _ string) string { return r.slewToTarget(ctx) },
	"Qn":  func(r *Responder, ctx context.Context, _ string) string { return r.stopSlew(ctx) },
	"Qe":  func(r *Responder, ctx context.Context, _ string) string { return r.stopSlew(ctx) },
	"Qs":  func(r *Responder, ctx context.Context, _ string) string { return r.stopSlew(ctx) },
	"Qw":  func(r *Responder, ctx context.Context, _ string) string { return r.stopSlew(ctx) },
	"Q#":  func(r *Responder, ctx context.Context, _ string) string { return r.stopSlew(ctx) },
	"RC":  func(r *Responder, ctx context.Context, _ string) string { r.setSlewRate(motor.Centering); return "" },
	"RG":  func(r *Responder, ctx context.Context, _ string) string { r.setSlewRate(motor.Guiding); return "" },
	"RM":  func(r *Responder, ctx context.Context, _ string) string { r.setSlewRate(motor.Find); return "" },
	"RS":  func(r *Responder, ctx context.Context, _ string) string { r.setSlewRate(motor.High); return "" },
	"SC":  func(r *Responder, ctx context.Context, data string) string { return r.setLocalDate(data) },
	"Sd":  func(r *Responder, ctx context.Context, data string) string { return r.setDec(data) },
	"Sg":  func(r *Responder, ctx context.Context, data string) string { return r.setSiteLongitude(data) },
	"SG":  func(r *Responder, ctx context.Context, data string) string { return defaultReply },
	"SL":  func(r *Responder, ctx context.Context, data string) string { return defaultReply },
	"Sr":  func(r *Responder, ctx context.Context, data string) string { return r.setRA(data) },
	"St":  func(r *Responder, ctx context.Context, data string) string { return r.setSiteLatitude(data) },
}

// takesArgument lists verbs whose command line carries a trailing
// value, mirroring dispatch_dict's has_arg flag.
var takesArgument = map[string]bool{
	"SC": true, "Sd": true, "Sg": true, "SG": true, "SL": true, "Sr": true, "St": true,
}

// orderedVerbs is dispatch's keys sorted longest-first so that a verb
// is tried before any shorter verb that is a prefix of it. Verbs of
// equal length keep the map's iteration order; none of them can shadow
// another, so that order does not affect which verb matches.
var orderedVerbs = buildOrderedVerbs()

func buildOrderedVerbs() []string {
	verbs := make([]string, 0, len(dispatch))
	for v := range dispatch {
		verbs = append(verbs, v)
	}
	// Longer verbs first so "GVP" is matched before a hypothetical "GV"
	// prefix, and "Q#" before "Qn" would be (they don't actually
	// collide, but the ordering keeps future additions safe).
	for i := 1; i < len(verbs); i++ {
		for j := i; j > 0 && len(verbs[j]) > len(verbs[j-1]); j-- {
			verbs[j], verbs[j-1] = verbs[j-1], verbs[j]
		}
	}
	return verbs
}

// Responder implements the LX200 verb set against a Controller.
type Responder struct {
	ctrl *controller.Controller

	mu        sync.Mutex
	targetRA  float64 // degrees
	targetDec float64 // degrees
	cmd       string
	now       func() time.Time
}

// NewResponder constructs a Responder over the given controller.
func NewResponder(ctrl *controller.Controller) *Responder {
	return &Responder{ctrl: ctrl, now: func() time.Time { return time.Now() }}
}

// Dispatch looks up line's verb and executes it, returning the reply
// to write, or "" if there is none. line has already had its leading
// ':' stripped but still carries its terminating '#' (needed to
// distinguish the "Q#" stop-all verb from "Qn"/"Qe"/"Qs"/"Qw").
// Unknown verbs are a ProtocolError: logged, no reply returned.
func (r *Responder) Dispatch(ctx context.Context, line string) string {
	for _, verb := range orderedVerbs {
		if strings.HasPrefix(line, verb) {
			r.mu.Lock()
			r.cmd = verb
			r.mu.Unlock()

			h := dispatch[verb]
			data := ""
			if takesArgument[verb] && len(line) > len(verb) {
				data = strings.TrimSuffix(line[len(verb):], "#")
			}
			metrics.RecordProtocolCommand(verb)
			return h(r, ctx, data)
		}
	}
	metrics.RecordUnknownCommand()
	log.Printf("protocol: unknown command %q", line)
	return ""
}

func (r *Responder) getRA() string {
	raDec := r.ctrl.GetRaDec()
	return FormatRA(raDec.RightAscension*15) + "#"
}

func (r *Responder) getDec() string {
	raDec := r.ctrl.GetRaDec()
	return FormatDec(raDec.Declination) + "#"
}

func (r *Responder) setRA(data string) string {
	ra, err := ParseRA(data)
	if err != nil {
		log.Printf("protocol: %v", errInvalidArgument("Sr", err))
		return defaultReply
	}
	r.mu.Lock()
	r.targetRA = ra
	r.mu.Unlock()
	return defaultReply
}

func (r *Responder) setDec(data string) string {
	dec, err := ParseDec(data)
	if err != nil {
		log.Printf("protocol: %v", errInvalidArgument("Sd", err))
		return defaultReply
	}
	r.mu.Lock()
	r.targetDec = dec
	r.mu.Unlock()
	return defaultReply
}

func (r *Responder) sync() string {
	r.mu.Lock()
	target := skymath.EquatorialCoordinates{RightAscension: r.targetRA / 15, Declination: r.targetDec}
	r.mu.Unlock()
	r.ctrl.SetRaDec(target)
	return "RANDOM NAME#"
}

func (r *Responder) slewToTarget(ctx context.Context) string {
	r.mu.Lock()
	target := skymath.EquatorialCoordinates{RightAscension: r.targetRA / 15, Declination: r.targetDec}
	r.mu.Unlock()

	reachable, err := r.ctrl.SlewTo(ctx, target)
	if err != nil {
		log.Printf("protocol: slew to target: %v", err)
		return slewImpossible
	}
	if !reachable {
		return slewImpossible
	}
	return slewPossible
}

func (r *Responder) slewInDirection(ctx context.Context, dir controller.Direction) string {
	if err := r.ctrl.SlewInDirection(ctx, dir); err != nil {
		log.Printf("protocol: slew in direction: %v", err)
	}
	return slewPossible
}

func (r *Responder) stopSlew(ctx context.Context) string {
	if err := r.ctrl.StopSlew(ctx); err != nil {
		log.Printf("protocol: stop slew: %v", err)
	}
	return ""
}

func (r *Responder) setSlewRate(rate motor.SlewRate) {
	r.ctrl.SetSlewRate(rate)
}

func (r *Responder) getSiteLatitude() string {
	loc := r.ctrl.ObserverLocation()
	return FormatLatitude(loc.Latitude) + "#"
}

func (r *Responder) setSiteLatitude(data string) string {
	lat, err := ParseLatitude(data)
	if err != nil {
		log.Printf("protocol: %v", errInvalidArgument("St", err))
		return defaultReply
	}
	r.ctrl.SetObserverLocation(&lat, nil)
	return defaultReply
}

func (r *Responder) getSiteLongitude() string {
	loc := r.ctrl.ObserverLocation()
	return FormatLongitude(loc.Longitude) + "#"
}

func (r *Responder) setSiteLongitude(data string) string {
	lon, err := ParseLongitude(data)
	if err != nil {
		log.Printf("protocol: %v", errInvalidArgument("Sg", err))
		return defaultReply
	}
	r.ctrl.SetObserverLocation(nil, &lon)
	return defaultReply
}

func (r *Responder) getUTCOffset() string {
	_, offset := r.now().Zone()
	hours := -float64(offset) / 3600
	return strconv.FormatFloat(hours, 'f', 1, 64) + "#"
}

func (r *Responder) getLocalTime() string {
	return r.now().Format("15:04:05") + "#"
}

func (r *Responder) getCurrentDate() string {
	return r.now().Format("01/02/06") + "#"
}

func (r *Responder) setLocalDate(_ string) string {
	return defaultReply + replySeparator +
		"Updating Planetary Data       " + replySeparator +
		"                              " + "#"
}
