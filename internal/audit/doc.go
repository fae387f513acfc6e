// Package audit records security-relevant keygate events:
//
//   - authentication decisions of the gate (granted, missing key,
//     rejected, authority unavailable)
//   - authorization decisions of the policy engine
//   - configuration reloads
//
// Events are written one per line as JSON or text to stdout, stderr or a
// rotating file. Raw API keys never appear in events.
//
//	auditor, err := audit.NewLogger(&audit.Config{Enabled: true, Output: "stdout"})
//	if err != nil {
//	    return err
//	}
//	defer auditor.Close()
//
//	auditor.LogEvent(ctx, audit.AuthenticationEvent(audit.OutcomeSuccess).
//	    WithSubject(&audit.Subject{ID: "k1", Name: "user123"}))
package audit
