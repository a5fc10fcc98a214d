package generation

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

// Templates holds the text/template sources used to build prompts.
// Empty fields fall back to the built-in Korean templates.
type Templates struct {
	System   string `yaml:"system"`
	Question string `yaml:"question"`
	Hints    string `yaml:"hints"`
	// Assessment grades a validated question against its context.
	Assessment string `yaml:"assessment"`
}

const defaultSystem = `당신은 중학교 {{.Subject}} 과목의 전문 교사입니다. 주어진 교과서 내용을 바탕으로 고품질의 5지선다 문제를 만듭니다. 반드시 JSON 객체 하나만 출력합니다.`

const defaultQuestion = `다음 교과서 내용을 바탕으로 {{.Difficulty}} 난이도의 {{.KindLabel}} 5지선다 문제를 1개 생성해주세요.
{{if .Unit}}단원: {{.Unit}}
{{end}}
교과서 내용:
{{.Context}}

문제 생성 규칙:
1. 교과서 내용에 직접 관련된 문제
2. 5개의 선택지 (정답 1개, 매력적인 오답 4개), 서로 다른 내용
3. 상세하고 교육적인 해설, 해설에는 정답 선택지의 핵심 표현을 포함
4. 한국어로 작성

난이도 기준 ({{.Difficulty}}): {{.DifficultyGuide}}
문제 유형 ({{.Kind}}): {{.KindGuide}}
{{if .Correction}}
이전 답변의 문제점: {{.Correction}}
위 문제점을 고쳐서 다시 작성하세요.
{{end}}
출력 형식 (JSON만 출력):
{
    "question": "문제 텍스트",
    "options": ["1번 선택지", "2번 선택지", "3번 선택지", "4번 선택지", "5번 선택지"],
    "correct_answer": 정답_번호(1-5),
    "explanation": "정답 해설 및 풀이 과정"
}`

const defaultHints = `다음 5지선다 문제를 푸는 학생에게 줄 힌트를 2개 작성하세요.

교과서 내용:
{{.Context}}

문제: {{.Stem}}
{{range $i, $o := .Options}}{{inc $i}}. {{$o}}
{{end}}
힌트 작성 가이드:
- 정답을 직접 말하지 않고 문제 해결 방향을 제시
- 관련 개념이나 공식을 간접적으로 언급
- 정답 선택지의 문구를 그대로 쓰지 않음
{{if .Correction}}
이전 답변의 문제점: {{.Correction}}
{{end}}
출력 형식 (JSON만 출력):
{"hints": ["힌트1", "힌트2"]}`

const defaultAssessment = `당신은 AI가 생성한 교육용 문제를 평가하는 전문 평가자입니다.
주어진 원본 컨텍스트와 생성된 문제를 바탕으로 다음 기준에 따라 품질을 평가하세요.

원본 컨텍스트:
{{.Context}}

생성된 문제 ({{.Difficulty}} 난이도):
문제: {{.Stem}}
{{range $i, $o := .Options}}{{inc $i}}. {{$o}}
{{end}}정답: {{.Answer}}
해설: {{.Explanation}}

평가 기준 (각 1~5점):
- relevance: 원본 컨텍스트의 핵심 내용을 다루는가
- clarity: 중학생 수준에서 명확하고 모호함 없이 이해할 수 있는가
- correctness: 정답과 해설이 사실에 근거하여 정확한가
- distractor_plausibility: 오답 선택지가 그럴듯하여 정답을 추측하기 어려운가
- difficulty_alignment: 체감 난이도가 명시된 난이도와 일치하는가

출력 형식 (JSON만 출력):
{
    "scores": {
        "relevance": {"score": 정수(1-5), "reason": "평가 이유"},
        "clarity": {"score": 정수(1-5), "reason": "평가 이유"},
        "correctness": {"score": 정수(1-5), "reason": "평가 이유"},
        "distractor_plausibility": {"score": 정수(1-5), "reason": "평가 이유"},
        "difficulty_alignment": {"score": 정수(1-5), "reason": "평가 이유"}
    },
    "summary": "전반적인 평가 요약 및 개선 제안"
}`

var difficultyGuides = map[question.Difficulty]string{
	question.Easy:   "기본 개념 이해 확인, 단순 암기, 용어 정의",
	question.Medium: "개념 적용 및 계산, 예제 문제 응용",
	question.Hard:   "복합적 사고 및 응용, 심화 분석, 문제 해결",
}

var kinds = map[question.Kind]struct{ label, guide string }{
	question.Concept:     {"개념", "텍스트에 직접 언급된 핵심 개념을 묻는 문제"},
	question.Application: {"응용", "텍스트의 개념을 다른 상황에 적용하는 문제"},
	question.Inference:   {"추론", "텍스트 내용을 바탕으로 논리적 추론을 요구하는 문제"},
}

// promptData is the template input.
type promptData struct {
	Subject         string
	Unit            string
	Difficulty      question.Difficulty
	DifficultyGuide string
	Kind            question.Kind
	KindLabel       string
	KindGuide       string
	Context         string
	Correction      string
	Stem            string
	Options         []string
	Answer          string
	Explanation     string
}

// Prompts renders question and hint prompts.
type Prompts struct {
	system     *template.Template
	question   *template.Template
	hints      *template.Template
	assessment *template.Template
}

// NewPrompts parses the templates, substituting defaults for empty sources.
func NewPrompts(t Templates) (*Prompts, error) {
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	parse := func(name, src, def string) (*template.Template, error) {
		if src == "" {
			src = def
		}
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt template: %w: %w", name, domain.ErrInvalidConfiguration, err)
		}
		return tmpl, nil
	}

	var p Prompts
	var err error
	if p.system, err = parse("system", t.System, defaultSystem); err != nil {
		return nil, err
	}
	if p.question, err = parse("question", t.Question, defaultQuestion); err != nil {
		return nil, err
	}
	if p.hints, err = parse("hints", t.Hints, defaultHints); err != nil {
		return nil, err
	}
	if p.assessment, err = parse("assessment", t.Assessment, defaultAssessment); err != nil {
		return nil, err
	}
	return &p, nil
}

func newPromptData(t *task, contextText, correction string) promptData {
	k := kinds[t.kind]
	return promptData{
		Subject:         t.subject,
		Unit:            t.unit,
		Difficulty:      t.difficulty,
		DifficultyGuide: difficultyGuides[t.difficulty],
		Kind:            t.kind,
		KindLabel:       k.label,
		KindGuide:       k.guide,
		Context:         contextText,
		Correction:      correction,
	}
}

// Question renders the prompt that asks for one question draft.
func (p *Prompts) Question(data promptData) (system, user string, err error) {
	if system, err = render(p.system, data); err != nil {
		return "", "", err
	}
	if user, err = render(p.question, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Hints renders the prompt that asks for hints to an accepted question.
func (p *Prompts) Hints(data promptData) (system, user string, err error) {
	if system, err = render(p.system, data); err != nil {
		return "", "", err
	}
	if user, err = render(p.hints, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Assessment renders the prompt that grades a validated question.
func (p *Prompts) Assessment(data promptData) (system, user string, err error) {
	if system, err = render(p.system, data); err != nil {
		return "", "", err
	}
	if user, err = render(p.assessment, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
