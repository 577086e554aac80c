// Package match implements the track matching engine.
//
// Matching happens in three layers:
//
//  1. Text normalization and Levenshtein similarity over normalized strings
//  2. A weighted candidate scorer combining name, artist, and duration signals
//  3. The [Engine], which obtains candidates (from a pre-fetched pool or via
//     tiered platform search) and classifies the best one by confidence
//
// Scores are in [0,1]. The thresholds that split AUTO_MATCHED from
// PENDING_REVIEW and FAILED live in [Config] and default to the values in
// [DefaultConfig]; they are deliberately tunable.
package match
