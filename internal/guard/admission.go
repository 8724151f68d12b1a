package guard

// OnBeforeRequest decides whether a plain-http request may be sent. Only
// requests flagged by the redirect classifier are affected: with the
// block-downgrades policy on they are cancelled and the flag is consumed,
// otherwise they proceed and the flag stays for the header synthesizer.
func (g *Guard) OnBeforeRequest(ev RequestEvent) (a Admission) {
	a = Admission{Outcome: AdmitPassthrough}
	var cleared bool
	defer g.recoverHandler("request", ev.RequestID, func() {
		if cleared {
			g.tracker.Mark(ev.RequestID)
		}
	})

	if !g.tracker.IsMarked(ev.RequestID) {
		return a
	}

	if g.policy.BlockDowngrades() {
		g.tracker.Clear(ev.RequestID)
		cleared = true
		g.log.Warn().Str("id", ev.RequestID).Str("url", ev.URL).
			Msg("cancelled http redirect loop (allow http downgrades or this load will never succeed)")
		g.record(RequestCancelled, ev.RequestID, ev.URL, "")
		return Admission{Cancel: true, Outcome: AdmitCancelled}
	}

	g.log.Info().Str("id", ev.RequestID).Str("url", ev.URL).Msg("allowed http downgrade")
	g.record(RequestAllowed, ev.RequestID, ev.URL, "")
	return Admission{Outcome: AdmitAllowed}
}
