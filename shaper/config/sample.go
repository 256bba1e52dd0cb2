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

package config

const linkSample = `
# The transmission rate of the link in bytes per second. (required)
rate = 1250000

# The largest packet a source may emit in bytes. (default 1500)
mtu = 1500
`

const schedulerSample = `
# The ID of the root class in major:minor notation. The major number is
# shared by all classes. (default "1:0")
root = "1:0"

# The leaf class receiving packets no filter matches. If not set, such
# packets are dropped. (default "")
default_class = "1:12"

# The capacity of every leaf queue in packets. (default 1000)
queue_limit = 1000

# The maximum number of classes including the root. (default 65535)
max_classes = 65535
`

const treeSample = `
# The class hierarchy. Parents must be listed before their children, an
# omitted parent selects the root. Every class needs a real-time (rt) or a
# link-share (ls) curve, an upper-limit (ul) curve is optional. Slopes m1
# and m2 are in bytes per second, d is the length of the first segment.
[[classes]]
id = "1:1"
ls = { m2 = 1250000 }
ul = { m2 = 1250000 }

[[classes]]
id = "1:10"
parent = "1:1"
rt = { m1 = 500000, d = "5ms", m2 = 125000 }
ls = { m2 = 250000 }

[[classes]]
id = "1:11"
parent = "1:1"
ls = { m2 = 750000 }

[[classes]]
id = "1:12"
parent = "1:1"
ls = { m2 = 250000 }

# Filters direct marked packets to a class while classification is at the
# parent class. An omitted parent selects the root.
[[filters]]
mark = 1
class = "1:11"

# Traffic sources. A source with priority set sends directly to its class,
# others are classified by mark. A rate of zero sends as fast as the
# scheduler accepts, a count of zero sends until shutdown.
[[sources]]
name = "voice"
class = "1:10"
priority = true
rate = 100000
packet_size = 200

[[sources]]
name = "bulk"
mark = 1
rate = 1000000
packet_size = 1500

[[sources]]
name = "other"
rate = 400000
packet_size = 1000
start = "1s"
`
