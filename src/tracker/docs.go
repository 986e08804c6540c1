// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package tracker keeps the persisted record of blocked domains current.
//
// A [Tracker] sits between a [Checker] (usually a *blockwatch.Checker) and
// a [Store]. It exposes the operations a front end needs:
//
//   - [Tracker.CheckDomain] checks a domain on demand and starts tracking it
//     when it is found blocked and not ignored.
//   - [Tracker.ListResolverHealth] returns the last health snapshot.
//   - [Tracker.ListBlockedDomains] lists tracked domains with the ISPs that
//     enforce them.
//   - [Tracker.AddDomain] adds a domain on an operator's request, guarded
//     by a bcrypt-hashed admin token.
//
// [Tracker.Reconcile] re-probes every tracked domain on the enforcing
// resolvers and creates or removes per-ISP [BlockingInstance] records as
// enforcement changes, notifying on every transition. Domains that are no
// longer blocked anywhere, or that no longer resolve, stop being tracked.
//
// [Loop] drives a cycle function such as Reconcile on a fixed cadence:
//
//	loop := t.ReconcileLoop(time.Minute)
//	go loop.Run(ctx)
package tracker
