// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hfsc implements a Hierarchical Fair Service Curve packet scheduler.
//
// A Scheduler owns a tree of traffic classes. Every class may carry up to
// three service curves:
//
//   - a real-time curve, guaranteeing a deadline for the next packet of a
//     backlogged leaf,
//   - a link-share curve, distributing excess capacity among siblings in
//     proportion to their curves,
//   - an upper-limit curve, bounding the link-share service of the class.
//
// Only leaf classes hold packets. Packets are stored in Queue collaborators,
// one per leaf, and selected by Dequeue. Dequeue never blocks: if no class
// may send at the current time, it arms the watchdog Timer and returns no
// packet. The configured resume callback is invoked once the earliest class
// becomes eligible again.
//
// All operations of a Scheduler are serialized by a single mutex, so a
// Scheduler can be shared by a transmitting goroutine and any number of
// enqueueing and configuring goroutines.
package hfsc
