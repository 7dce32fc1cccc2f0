// Package simmap encodes and decodes SIMMAP character histories.
//
// A SIMMAP string describes the stochastic history of a discrete character
// along one branch as a braced list of state,duration pairs separated by
// colons. The leftmost pair is the segment nearest the tip:
//
//	{tip_state,d_k: ... :root_state,d_1}
//
// [Decode] reads a string right to left and returns a [BranchHistory] in
// forward time, root end first. [Encode] and [Builder] produce the same wire
// order by prepending pairs, so decoding then encoding a well-formed string
// reproduces it.
//
//	h, err := simmap.Decode("{1,0.5:0,0.5}")
//	// h == BranchHistory{{State: "0", Duration: 0.5}, {State: "1", Duration: 0.5}}
package simmap
