package relay

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	muscleInfoSystem = "You're a certified fitness coach. For each muscle name, return one sentence summarizing its function."

	workoutSummarySystem = "You're a certified personal trainer. For each muscle name provided, respond with a single, concise sentence describing a typical workout targeting that muscle. Keep it clear and actionable."

	formCuePrompt = "Give maximum 1 SENTENCE with MAX 10-20 words of form-focused workout coaching tips for: %s"

	poseFeedbackPrompt = `You are a physical therapist. Analyze human body pose from 2D keypoints and give 1-2 sentences of corrective advice.
Focus on safety, injury prevention, joint angles, symmetry, or posture.
Do not reference the keypoints directly. Speak like a coach watching a client move.

Here is the observed pose:
%s`

	summaryUnavailable = "Summary unavailable."
)

// musclePrompt lists one name per line under a fixed header.
func musclePrompt(names []string) string {
	return "Muscles:\n" + strings.Join(names, "\n")
}

func cuePrompt(input string) string {
	return fmt.Sprintf(formCuePrompt, input)
}

// Keypoint is one detected body landmark. Coordinates are normalized to [0,1].
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// keypointTable renders keypoints as "name: (x=0.1, y=0.2, score=0.90)"
// joined by ", ". Unnamed points are labelled by index.
func keypointTable(kps []Keypoint) string {
	parts := make([]string, len(kps))
	for i, kp := range kps {
		name := strings.TrimSpace(kp.Name)
		if name == "" {
			name = fmt.Sprintf("kp-%d", i)
		}
		parts[i] = fmt.Sprintf("%s: (x=%.1f, y=%.1f, score=%.2f)", name, kp.X, kp.Y, kp.Score)
	}
	return strings.Join(parts, ", ")
}

func posePrompt(kps []Keypoint) string {
	return fmt.Sprintf(poseFeedbackPrompt, keypointTable(kps))
}

// WorkoutCue pairs a workout with its spoken coaching cue.
type WorkoutCue struct {
	Name string `json:"name"`
	Cues string `json:"cues"`
}

// speechText composes the utterance for the speech relay. Workouts must
// already carry their cues.
func speechText(muscleName string, workouts []WorkoutCue) string {
	if len(workouts) == 0 {
		return fmt.Sprintf("Here is a motivational workout tip to target your %s muscle.", muscleName)
	}
	parts := make([]string, 0, len(workouts)+1)
	parts = append(parts, fmt.Sprintf("Here are your form cues for %s.", muscleName))
	for _, w := range workouts {
		parts = append(parts, fmt.Sprintf("For %s, remember: %s", w.Name, strings.TrimSpace(w.Cues)))
	}
	return strings.Join(parts, " ")
}

var listMarker = regexp.MustCompile(`^\s*(?:[-•*]+|\d+[.)])\s*`)

// summaryLines splits a model reply into bare, non-empty lines.
func summaryLines(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// alignSummaries maps reply lines produced for the normalized names back to
// the caller's order. A line that names its muscle ("Chest: ...") is matched by
// name; otherwise lines are taken positionally.
func alignSummaries(normalized []string, reply string) map[string]string {
	lines := summaryLines(reply)
	out := make(map[string]string, len(normalized))
	var unmatched []string
	for _, line := range lines {
		if name, rest, ok := strings.Cut(line, ":"); ok {
			key := strings.ToLower(strings.Trim(strings.TrimSpace(name), "*[]"))
			if _, seen := out[key]; !seen && slices.Contains(normalized, key) && strings.TrimSpace(rest) != "" {
				out[key] = line
				continue
			}
		}
		unmatched = append(unmatched, line)
	}
	for _, name := range normalized {
		if _, ok := out[name]; ok {
			continue
		}
		if len(unmatched) == 0 {
			break
		}
		out[name] = unmatched[0]
		unmatched = unmatched[1:]
	}
	return out
}

// orderedSummary renders exactly one line per requested name in request order.
func orderedSummary(names []string, byName map[string]string) string {
	lines := make([]string, len(names))
	for i, n := range names {
		line, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok || line == "" {
			line = summaryUnavailable
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
