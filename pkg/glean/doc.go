/*
Package glean is the client facade: it wires storage, the dispatcher, the
databases, the ping maker and the upload manager together and exposes the
few global controls an application needs.

	cfg, _ := config.Load("glean.yaml")
	g, err := glean.New(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	clicks := metrictype.NewCounter(g.Context(), types.CommonMetricData{
		Category: "ui", Name: "clicks", SendInPings: []string{"metrics"},
	})
	metricsPing := pings.NewPingType(g.Maker(), "metrics", true, false)

	g.Initialize(true)
	clicks.Add(1)
	metricsPing.Submit("")

# Upload toggling

Disabling upload submits a deletion-request ping carrying the current
client id, then clears pending pings, metrics and events and replaces the
client id with KnownClientID. If upload was disabled while the client was
not running, Initialize notices the leftover client id and sends the
deletion-request with reason "at_init".
*/
package glean
