// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package action

// Kind is the operation an action performs
type Kind int

const (
	KindGet Kind = iota
	KindSet
	KindCreate
	KindUpdate
	KindCompareAndSwap
	KindDelete
	KindCompareAndDelete
	KindPut
	KindLock
	KindUnlock
	KindTxn
	KindWatch
	KindLeaseGrant
	KindLeaseRevoke
	KindLeaseKeepAlive
	KindLeaseTimeToLive
	KindLeaseLeases
	KindCampaign
	KindProclaim
	KindLeader
	KindObserve
	KindResign
	KindAddMember
	KindListMember
	KindRemoveMember
	KindHead
)

var kindNames = [...]string{
	KindGet:              "get",
	KindSet:              "set",
	KindCreate:           "create",
	KindUpdate:           "update",
	KindCompareAndSwap:   "compareAndSwap",
	KindDelete:           "delete",
	KindCompareAndDelete: "compareAndDelete",
	KindPut:              "put",
	KindLock:             "lock",
	KindUnlock:           "unlock",
	KindTxn:              "txn",
	KindWatch:            "watch",
	KindLeaseGrant:       "leasegrant",
	KindLeaseRevoke:      "leaserevoke",
	KindLeaseKeepAlive:   "leasekeepalive",
	KindLeaseTimeToLive:  "leasetimetolive",
	KindLeaseLeases:      "leaseleases",
	KindCampaign:         "campaign",
	KindProclaim:         "proclaim",
	KindLeader:           "leader",
	KindObserve:          "observe",
	KindResign:           "resign",
	KindAddMember:        "addmember",
	KindListMember:       "listmember",
	KindRemoveMember:     "removemember",
	KindHead:             "head",
}

// String returns the display name used as the response action tag
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Streaming reports whether the kind runs over a stream
func (k Kind) Streaming() bool {
	return k == KindWatch || k == KindLeaseKeepAlive || k == KindObserve
}
