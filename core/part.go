package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set, so the
// loop can exhaustively switch on kind.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// FunctionCall describes a tool invocation requested by the model.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Stable id correlating call and result
	Name      string `json:"name"`                // Tool name
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument payload
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall `json:"function_call"`
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the resolved outcome of a function call.
// Exactly one of Response or Error is meaningful.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // Matches originating FunctionCall ID
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"` // Successful result (any JSON-serializable shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse `json:"function_response"`
}

func (FunctionResponsePart) isPart() {}

// HandoffPart marks the transfer of control from one agent to another.
// It is recorded in history so the next agent's model call sees that a
// hand-off happened and who acted before it.
type HandoffPart struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (HandoffPart) isPart() {}
