package engine

import (
	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// advanceConfirmations re-evaluates every live monitor's detections against
// the new tip height, adapting TxConfNotifier.ConnectTip's bookkeeping
// (chainntnfs/txconfnotifier.go) from a single in-memory ntfnsByConfirmHeight
// index into a per-spec pass over the durable store, and from single-txid
// tracking to the Group kind's all-members-finalized accounting that the
// teacher's ConfNtfn type never needed.
//
// It assumes the caller has already run detectBlock for this height, so
// every detection it walks has confirmations = tipHeight - block.Height + 1
// exactly one higher than on the previous tick.
func (m *Monitor) advanceConfirmations(stx *store.Tx, tipHeight uint32) error {
	specs, states, err := stx.AllMonitors()
	if err != nil {
		return err
	}

	for i, spec := range specs {
		if !states[i].Live() {
			continue
		}
		if spec.Kind == monitor.KindGroup {
			if err := m.advanceGroup(stx, spec, states[i], tipHeight); err != nil {
				return err
			}
			continue
		}
		if err := m.advanceSingle(stx, spec, tipHeight); err != nil {
			return err
		}
	}
	return nil
}

// advanceSingle handles Tx, Utxo, and PegIn monitors, each of which finalize
// independently per detected txid.
func (m *Monitor) advanceSingle(stx *store.Tx, spec monitor.Spec, tipHeight uint32) error {
	detections, err := stx.DetectionsForSpec(spec.Key())
	if err != nil {
		return err
	}
	for _, det := range detections {
		if det.Finalized {
			continue
		}
		if err := m.advanceDetection(stx, spec, det, tipHeight); err != nil {
			return err
		}
	}
	return nil
}

// advanceGroup handles Group monitors: individual members accrue
// confirmations the same as any other detection, but the group's single
// Finalized news item only fires once every member has reached threshold,
// per spec.md §4.4.
func (m *Monitor) advanceGroup(stx *store.Tx, spec monitor.Spec, state monitor.State, tipHeight uint32) error {
	detections, err := stx.DetectionsForSpec(spec.Key())
	if err != nil {
		return err
	}

	byTxid := make(map[string]monitor.Detection, len(detections))
	for _, det := range detections {
		byTxid[det.Txid.String()] = det
	}

	for _, det := range detections {
		if det.Finalized {
			continue
		}
		updated, err := m.advanceDetectionImpl(stx, spec, det, tipHeight, false)
		if err != nil {
			return err
		}
		byTxid[updated.Txid.String()] = updated
	}

	if state.GroupFinalizedEmitted {
		return nil
	}

	allFinalized := len(spec.Members) > 0
	for _, member := range spec.Members {
		det, ok := byTxid[member.String()]
		if !ok || !det.Finalized {
			allFinalized = false
			break
		}
	}
	if !allFinalized {
		return nil
	}

	state.GroupFinalizedEmitted = true
	state.LastEventHeight = tipHeight
	if err := stx.PutMonitor(spec, state); err != nil {
		return err
	}
	return emitNews(stx, monitor.NewsFinalized, spec, tipHeight, monitor.FinalizedPayload{})
}

// advanceDetection computes det's confirmations at tipHeight, emits
// ConfirmationUpdate or (on first crossing threshold) Finalized, and
// persists the updated Detection.
func (m *Monitor) advanceDetection(stx *store.Tx, spec monitor.Spec, det monitor.Detection, tipHeight uint32) error {
	_, err := m.advanceDetectionImpl(stx, spec, det, tipHeight, true)
	return err
}

// advanceDetectionImpl computes det's confirmations at tipHeight and emits
// ConfirmationUpdate, or (on first crossing threshold) marks it Finalized,
// optionally emitting a Finalized news item — Group callers pass
// emitFinalized=false since the group, not any one member, owns that event.
func (m *Monitor) advanceDetectionImpl(stx *store.Tx, spec monitor.Spec, det monitor.Detection, tipHeight uint32, emitFinalized bool) (monitor.Detection, error) {
	confs := det.Confirmations(tipHeight)
	if confs == 0 {
		return det, nil
	}

	if confs >= m.cfg.ConfirmationThreshold {
		det.Finalized = true
		if err := stx.PutDetection(det); err != nil {
			return det, err
		}
		if emitFinalized {
			if err := emitNews(stx, monitor.NewsFinalized, spec, tipHeight, monitor.FinalizedPayload{Txid: det.Txid}); err != nil {
				return det, err
			}
		}
		return det, nil
	}

	// confs == 1 is the detection tick itself — Detected already carries
	// that news, so the first ConfirmationUpdate worth emitting is the
	// second confirmation.
	if confs == 1 {
		return det, nil
	}

	return det, emitNews(stx, monitor.NewsConfirmationUpdate, spec, tipHeight, monitor.ConfirmationUpdatePayload{
		Txid:          det.Txid,
		Confirmations: confs,
	})
}
