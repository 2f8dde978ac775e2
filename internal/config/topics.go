package config

const (
	// TopicAudioGenerated is the NSQ topic announcing a freshly stored narration.
	TopicAudioGenerated = "audio.generated"

	// TopicAudioDeleted is the NSQ topic announcing an explicit narration removal.
	TopicAudioDeleted = "audio.deleted"

	// TopicContentRevalidate asks the rendering layer to rebuild a cached path.
	TopicContentRevalidate = "content.revalidate"
)
