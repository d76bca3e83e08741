// Package checkpoint recovers the most recent training state from a
// directory of timestamped run folders, and writes the checkpoint
// files the trainer produces at the end of each epoch.
//
// Layout consumed and produced:
//
//	<save_root>/<RUN_FOLDER>/checkpoints/epoch=NN-step=SSS.ckpt
//
// where RUN_FOLDER starts with a 16-character YYYY_MM_DD_HH:MM prefix.
package checkpoint
