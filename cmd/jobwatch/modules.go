package main

// Compiled-in modules. Each registers itself with core in init().
import (
	_ "github.com/flemzord/jobwatch/internal/gateway"
	_ "github.com/flemzord/jobwatch/modules/notify/email"
	_ "github.com/flemzord/jobwatch/modules/notify/nats"
	_ "github.com/flemzord/jobwatch/modules/notify/sendgrid"
	_ "github.com/flemzord/jobwatch/modules/notify/slack"
)
