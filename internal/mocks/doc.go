package mocks

//go:generate mockgen -destination=mock_renderer.go -package=mocks github.com/alvmarrod/contact-weaver/internal/render Renderer
//go:generate mockgen -destination=mock_sink.go -package=mocks github.com/alvmarrod/contact-weaver/internal/output Sink
//go:generate mockgen -destination=mock_message_writer.go -package=mocks -mock_names=messageWriter=MockMessageWriter github.com/alvmarrod/contact-weaver/internal/output messageWriter
