// Package forceupdate decides whether a running application must be blocked
// until the user upgrades.
//
// A Controller compares the installed version with the latest version listed
// in the app marketplace and with the minimum version declared in a remote
// manifest hosted by the operator. Both documents are fetched in parallel on
// every check; a document that cannot be fetched or decoded leaves its
// version unknown for that round. An unknown minimum never requires an
// update.
//
// When the installed version is below the manifest minimum the controller
// publishes an Event to every current subscriber. The presentation layer
// decides how to block the UI and where to send the user, typically
// Event.Destination().
//
//	c, err := forceupdate.New(forceupdate.Config{
//		ManifestURL:      "https://example.com/version.json",
//		BundleID:         "com.example.app",
//		InstalledVersion: "1.4.0",
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	sub := c.Subscribe()
//	go func() {
//		for ev := range sub.Events() {
//			showUpgradeScreen(ev.Destination())
//		}
//	}()
//
//	snap, _ := c.CheckForUpdate(ctx)
package forceupdate
